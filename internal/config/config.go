package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/relaynode/internal/logging"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "RELAYNODE_"

// LoadConfig fills a flat options struct with precedence CLI flags > env
// vars > config file > defaults. Fields are mapped with `toml:"a.b"` and
// `env:"A_B"` tags; the file path is taken from a field named Config.
// Flags that cmd reports as changed are never overwritten.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: expected pointer to struct, got %T", opts)
	}
	v = v.Elem()
	t := v.Type()

	changed := make(map[string]bool)
	if cmd != nil {
		markChanged := func(f *pflag.Flag) {
			if f.Changed {
				changed[f.Name] = true
			}
		}
		cmd.Flags().VisitAll(markChanged)
		cmd.PersistentFlags().VisitAll(markChanged)
	}

	var file map[string]any
	if path := configPath(v); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("failed to parse TOML config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var errs []string
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		sf := t.Field(i)
		if changed[fieldNameToFlag(sf.Name)] {
			continue
		}

		if tomlPath := sf.Tag.Get("toml"); tomlPath != "" && file != nil {
			if value := getNestedValue(file, tomlPath); value != nil {
				if err := setFieldValue(field, value); err != nil {
					errs = append(errs, fmt.Sprintf("%s: %v", tomlPath, err))
				}
			}
		}

		if envKey := sf.Tag.Get("env"); envKey != "" {
			if raw, ok := os.LookupEnv(EnvPrefix + envKey); ok && raw != "" {
				if err := setFieldValueFromString(field, raw); err != nil {
					errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, envKey, err))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config values: %s", strings.Join(errs, "; "))
	}
	return nil
}

func configPath(v reflect.Value) string {
	f := v.FieldByName("Config")
	if !f.IsValid() || f.Kind() != reflect.String {
		return ""
	}
	return f.String()
}

// fieldNameToFlag converts a field name to the flag humacli derives from it,
// e.g. "ServerPort" -> "server-port".
func fieldNameToFlag(fieldName string) string {
	var out []rune
	runes := []rune(fieldName)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			out = append(out, '-')
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

// getNestedValue looks up a dotted path in a decoded TOML document.
func getNestedValue(data map[string]any, path string) any {
	current := data
	parts := strings.Split(path, ".")
	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

func setFieldValue(field reflect.Value, value any) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		switch s := value.(type) {
		case string:
			field.SetString(s)
		case []any:
			// Lists land in string fields comma-joined, the same form the
			// flag and env var take.
			parts, err := stringItems(s)
			if err != nil {
				return err
			}
			field.SetString(strings.Join(parts, ","))
		default:
			return fmt.Errorf("want string, got %T", value)
		}
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		default:
			return fmt.Errorf("want integer, got %T", value)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		arr, ok := value.([]any)
		if !ok {
			return fmt.Errorf("want array, got %T", value)
		}
		out, err := stringItems(arr)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(out))
	}
	return nil
}

func stringItems(arr []any) ([]string, error) {
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("want array of strings, got %T element", item)
		}
		out = append(out, s)
	}
	return out, nil
}

func setFieldValueFromString(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		field.Set(reflect.ValueOf(out))
	}
	return nil
}

// LoadLoggingConfig reads the [logging] table of a config file. Keys other
// than level and format are per-module levels. Missing or unreadable files
// yield the defaults.
func LoadLoggingConfig(path string) (logging.Config, error) {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var raw struct {
		Logging map[string]any `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
	}

	for key, value := range raw.Logging {
		s, ok := value.(string)
		if !ok {
			continue
		}
		switch key {
		case "level":
			cfg.Level = s
		case "format":
			cfg.Format = s
		default:
			cfg.Modules[key] = s
		}
	}
	return cfg, nil
}
