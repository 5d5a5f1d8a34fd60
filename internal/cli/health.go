package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// NewHealthCmd создаёт команду проверки зависимостей API.
// Завершается ошибкой, если хотя бы одна зависимость нездорова.
func NewHealthCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show health of API dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			report, err := client.Health()
			if err != nil {
				return err
			}

			names := make([]string, 0, len(report))
			for name := range report {
				names = append(names, name)
			}
			sort.Strings(names)

			var unhealthy int
			rows := make([][]string, len(names))
			for i, name := range names {
				rows[i] = []string{name, report[name].Status}
				if report[name].Status != "healthy" {
					unhealthy++
				}
			}

			if err := out.Print([]string{"DEPENDENCY", "STATUS"}, rows, report); err != nil {
				return err
			}
			if unhealthy > 0 {
				return fmt.Errorf("%d of %d dependencies unhealthy", unhealthy, len(names))
			}
			return nil
		},
	}
}
