// Package config loads ispctl options from CLI flags, ISPCTL_* environment
// variables and a TOML file, and watches the tuning file for changes.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable named by an env tag.
const EnvPrefix = "ISPCTL_"

var durationType = reflect.TypeOf(time.Duration(0))

// option is one tagged field of an options struct.
type option struct {
	value   reflect.Value
	flag    string
	tomlKey string
	envKey  string
}

// options lists the settable fields of the struct opts points to.
func options(opts any) []option {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()
	out := make([]option, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		out = append(out, option{
			value:   v.Field(i),
			flag:    fieldNameToFlag(f.Name),
			tomlKey: f.Tag.Get("toml"),
			envKey:  f.Tag.Get("env"),
		})
	}
	return out
}

// changedFlags names the flags set on the command line, local or persistent.
func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	mark := func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	}
	cmd.Flags().VisitAll(mark)
	cmd.PersistentFlags().VisitAll(mark)
	return changed
}

// readTOML parses the file at path. A missing file yields an empty document.
func readTOML(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return doc, nil
}

// LoadConfig fills opts with precedence CLI flag > ISPCTL_* environment >
// TOML file > default. The file is named by the Config field; flags set on
// cmd keep their value.
func LoadConfig(opts any, cmd *cobra.Command) error {
	fields := options(opts)
	changed := changedFlags(cmd)

	var path string
	if f := reflect.ValueOf(opts).Elem().FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		path = f.String()
	}
	doc, err := readTOML(path)
	if err != nil {
		return err
	}

	for _, o := range fields {
		if changed[o.flag] {
			continue
		}
		if o.tomlKey != "" {
			if value := getNestedValue(doc, o.tomlKey); value != nil {
				setFieldValue(o.value, value)
			}
		}
		if o.envKey != "" {
			if value := os.Getenv(EnvPrefix + o.envKey); value != "" {
				setFieldValueFromString(o.value, value)
			}
		}
	}
	return nil
}

// fieldNameToFlag converts a struct field name to a CLI flag name.
// Example: "LoggingLevel" -> "logging-level", "Port" -> "port".
func fieldNameToFlag(fieldName string) string {
	var result []rune
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '-')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// getNestedValue retrieves a value from nested map using dot notation.
func getNestedValue(data map[string]any, path string) any {
	current := data
	for {
		head, rest, nested := strings.Cut(path, ".")
		if !nested {
			return current[head]
		}
		next, ok := current[head].(map[string]any)
		if !ok {
			return nil
		}
		current, path = next, rest
	}
}

// setFieldValue sets a field value using reflection.
func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}

	if field.Type() == durationType {
		setDuration(field, value)
		return
	}

	switch field.Kind() {
	case reflect.String:
		switch v := value.(type) {
		case string:
			field.SetString(v)
		case int64:
			field.SetString(strconv.FormatInt(v, 10))
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		if i, ok := value.(int64); ok {
			field.SetInt(i)
		} else if i, intOk := value.(int); intOk {
			field.SetInt(int64(i))
		}
	case reflect.Uint32:
		if i, ok := value.(int64); ok && i >= 0 {
			field.SetUint(uint64(i))
		}
	case reflect.Float64:
		switch f := value.(type) {
		case float64:
			field.SetFloat(f)
		case int64:
			field.SetFloat(float64(f))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			if arr, ok := value.([]any); ok {
				slice := make([]string, len(arr))
				for i, v := range arr {
					if s, strOk := v.(string); strOk {
						slice[i] = s
					}
				}
				field.Set(reflect.ValueOf(slice))
			}
		}
	}
}

// setFieldValueFromString sets a field value from string (for env vars).
func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}

	if field.Type() == durationType {
		setDuration(field, value)
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Uint32:
		// Control ids are usually written in hex.
		if i, err := strconv.ParseUint(value, 0, 32); err == nil {
			field.SetUint(i)
		}
	case reflect.Float64:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			field.SetFloat(f)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Parse comma-separated values for env vars
			parts := strings.Split(value, ",")
			slice := make([]string, len(parts))
			for i, part := range parts {
				slice[i] = strings.TrimSpace(part)
			}
			field.Set(reflect.ValueOf(slice))
		}
	}
}

// setDuration accepts "250ms" style strings or a bare number of milliseconds.
func setDuration(field reflect.Value, value any) {
	switch v := value.(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			field.SetInt(int64(d))
		} else if ms, intErr := strconv.ParseInt(v, 10, 64); intErr == nil {
			field.SetInt(int64(time.Duration(ms) * time.Millisecond))
		}
	case int64:
		field.SetInt(int64(time.Duration(v) * time.Millisecond))
	}
}
