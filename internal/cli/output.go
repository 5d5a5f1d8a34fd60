package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output форматирует ответы API для терминала или для скриптов (--json).
//
// Данные идут в w, служебные сообщения в errW, так что
// `relayctl --json ... | jq` видит только JSON.
type Output struct {
	jsonMode bool
	w        io.Writer
	errW     io.Writer
}

// NewOutput создаёт Output в stdout/stderr.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(jsonMode, os.Stdout, os.Stderr)
}

// NewOutputTo создаёт Output с заданными writers.
func NewOutputTo(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{jsonMode: jsonMode, w: w, errW: errW}
}

// Print выводит список: таблицу или jsonData в JSON-режиме.
// Пустой список в табличном режиме сопровождается пометкой в errW.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) error {
	if o.jsonMode {
		return o.JSON(jsonData)
	}
	if len(rows) == 0 {
		o.Notice("no results")
		return nil
	}
	return o.table(headers, rows)
}

// Detail выводит один объект парами "KEY  value".
func (o *Output) Detail(fields [][2]string, jsonData any) error {
	if o.jsonMode {
		return o.JSON(jsonData)
	}
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	for _, f := range fields {
		value := f[1]
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\n", f[0], value)
	}
	return tw.Flush()
}

func (o *Output) table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// JSON выводит v с отступами.
func (o *Output) JSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Notice пишет служебное сообщение в errW.
func (o *Output) Notice(format string, args ...any) {
	fmt.Fprintf(o.errW, format+"\n", args...)
}
