// Package lib provides shared utilities like error handling and logging.
package lib

import (
	"bytes"
	"strconv"
	"strings"
	"sync"
	"text/template"
)

// TemplateEngine renders alert message templates. Parsed templates are
// cached by their source text since the same few templates run every tick.
type TemplateEngine struct {
	logger *Logger
	cache  map[string]*template.Template
	mu     sync.Mutex
}

// NewTemplateEngine creates a new template engine.
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{
		logger: NewLogger("template"),
		cache:  make(map[string]*template.Template),
	}
}

// TemplateFuncs are available to every alert template.
var TemplateFuncs = template.FuncMap{
	"comma": FormatThousands,
	"pct": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 0, 64)
	},
	"usd": func(v float64) string {
		return "$" + strconv.FormatFloat(v, 'f', 2, 64)
	},
}

// FormatThousands renders n with comma separators, e.g. 38250 -> "38,250".
func FormatThousands(n int) string {
	s := strconv.Itoa(n)
	sign := ""
	if n < 0 {
		sign, s = "-", s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}

func (te *TemplateEngine) parse(templateStr string) (*template.Template, error) {
	te.mu.Lock()
	defer te.mu.Unlock()

	if tmpl, ok := te.cache[templateStr]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New("alert").Funcs(TemplateFuncs).Parse(templateStr)
	if err != nil {
		return nil, err
	}
	te.cache[templateStr] = tmpl
	return tmpl, nil
}

// Execute executes a template string with the provided data.
func (te *TemplateEngine) Execute(templateStr string, data interface{}) (string, error) {
	if templateStr == "" {
		return "", TemplateError("template string cannot be empty")
	}

	tmpl, err := te.parse(templateStr)
	if err != nil {
		te.logger.Error("Template parsing failed", map[string]interface{}{
			"template": templateStr,
			"error":    err.Error(),
		})
		return "", WrapError(err, ErrCodeTemplate, "failed to parse template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		te.logger.Error("Template execution failed", map[string]interface{}{
			"template": templateStr,
			"error":    err.Error(),
		})
		return "", WrapError(err, ErrCodeTemplate, "failed to execute template")
	}

	return buf.String(), nil
}

// Validate parses a template string without executing it.
func (te *TemplateEngine) Validate(templateStr string) error {
	if templateStr == "" {
		return TemplateError("template string cannot be empty")
	}

	if _, err := template.New("validation").Funcs(TemplateFuncs).Parse(templateStr); err != nil {
		return WrapError(err, ErrCodeTemplate, "template validation failed")
	}
	return nil
}

// ExecuteWithDefault executes a template and returns a default value on error.
func (te *TemplateEngine) ExecuteWithDefault(templateStr string, data interface{}, defaultValue string) string {
	result, err := te.Execute(templateStr, data)
	if err != nil {
		te.logger.Warn("Template execution failed, using default", map[string]interface{}{
			"error": err.Error(),
		})
		return defaultValue
	}
	return result
}
