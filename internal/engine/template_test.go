package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shaiso/Relay/internal/domain"
)

func TestPlaceholders(t *testing.T) {
	got := Placeholders("Hi {{name}}", "{{ link }} and {{name}} again, {{  code }}")
	want := []string{"code", "link", "name"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Placeholders() = %v, want %v", got, want)
	}

	if len(Placeholders("no placeholders", "{{ not valid-name }}")) != 0 {
		t.Error("expected no placeholders")
	}
}

func TestRender_SubstitutesEveryOccurrence(t *testing.T) {
	tmpl := domain.Template{
		Subject: "Hi {{name}}",
		Body:    "Welcome {{ name }}! {{name}}, your code is {{code}}.",
	}

	r, err := Render(tmpl, map[string]any{"name": "Ann", "code": 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Subject != "Hi Ann" {
		t.Errorf("Subject = %q", r.Subject)
	}
	if r.Body != "Welcome Ann! Ann, your code is 42." {
		t.Errorf("Body = %q", r.Body)
	}
	if len(r.Unused) != 0 {
		t.Errorf("Unused = %v, want empty", r.Unused)
	}
}

func TestRender_MissingVariablesSorted(t *testing.T) {
	tmpl := domain.Template{
		Subject: "{{ zeta }}",
		Body:    "{{alpha}} {{ name }} {{ beta }}",
	}

	_, err := Render(tmpl, map[string]any{"name": "Ann"})
	if err == nil {
		t.Fatal("expected error")
	}

	// Ключи отсортированы и перечислены через запятую
	if err.Error() != "missing variables: alpha, beta, zeta" {
		t.Errorf("error = %q", err.Error())
	}

	var mv *MissingVariablesError
	if !errors.As(err, &mv) {
		t.Fatal("expected *MissingVariablesError")
	}
	if !errors.Is(err, ErrMissingVariables) {
		t.Error("expected ErrMissingVariables")
	}
	if !errors.Is(err, domain.ErrBadRequest) {
		t.Error("expected domain.ErrBadRequest")
	}
}

func TestRender_UnusedVariables(t *testing.T) {
	tmpl := domain.Template{Subject: "Hi", Body: "{{name}}"}

	r, err := Render(tmpl, map[string]any{"name": "Ann", "zip": 1, "extra": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"extra", "zip"}
	if !reflect.DeepEqual(r.Unused, want) {
		t.Errorf("Unused = %v, want %v", r.Unused, want)
	}
}

func TestRender_ValueCoercion(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "x", "x"},
		{"int", 7, "7"},
		{"float from json", float64(3), "3"},
		{"bool", true, "true"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Render(domain.Template{Body: "[{{v}}]"}, map[string]any{"v": tt.value})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Body != "["+tt.want+"]" {
				t.Errorf("Body = %q, want %q", r.Body, "["+tt.want+"]")
			}
		})
	}
}

func TestRender_NoPlaceholders(t *testing.T) {
	r, err := Render(domain.Template{Subject: "Static", Body: "Text"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Subject != "Static" || r.Body != "Text" {
		t.Errorf("got %+v", r)
	}
}
