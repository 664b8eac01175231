// Package config loads service configuration from an optional YAML file
// and environment variables using the env, yaml, default and required
// struct tags.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Validator interface allows config structs to implement custom validation logic.
// It runs after files, environment variables and defaults are applied.
type Validator interface {
	Validate() error
}

// setValue parses raw into field according to the field's type. Slices of
// strings are comma separated.
func setValue(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %s to duration: %v", raw, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to convert %s to int: %v", raw, err)
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to convert %s to float: %v", raw, err)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %s to bool: %v", raw, err)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(raw, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

// fieldKey identifies a field by its struct type so that nested structs
// with equally named fields do not collide.
func fieldKey(t reflect.Type, f reflect.StructField) string {
	return t.Name() + "." + f.Name
}

// applyEnv overlays environment variables and returns the fields it set.
func applyEnv(val reflect.Value, typ reflect.Type, set map[string]bool) error {
	for i := 0; i < val.NumField(); i++ {
		field, sf := val.Field(i), typ.Field(i)

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := applyEnv(field, sf.Type, set); err != nil {
				return err
			}
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw := os.Getenv(name)
		if raw == "" {
			continue
		}
		set[fieldKey(typ, sf)] = true
		if err := setValue(field, raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// applyDefaults fills zero fields that were not set from the environment
// and reports missing required fields. A default makes required moot.
func applyDefaults(val reflect.Value, typ reflect.Type, set map[string]bool) error {
	var result error
	for i := 0; i < val.NumField(); i++ {
		field, sf := val.Field(i), typ.Field(i)

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := applyDefaults(field, sf.Type, set); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}

		def := sf.Tag.Get("default")
		required := strings.EqualFold(sf.Tag.Get("required"), "true") || sf.Tag.Get("required") == "1"
		if !field.IsZero() {
			continue
		}
		if required && def == "" {
			result = multierror.Append(result, fmt.Errorf("required field env:%s / yaml:%s is missing",
				sf.Tag.Get("env"), sf.Tag.Get("yaml")))
			continue
		}
		if def == "" || set[fieldKey(typ, sf)] {
			continue
		}
		if err := setValue(field, def); err != nil {
			result = multierror.Append(result, fmt.Errorf("default for %s: %w", sf.Name, err))
		}
	}
	return result
}

func validate(v any) error {
	if validator, ok := v.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// GetConfigFromEnvVars loads configuration from environment variables only.
// On a missing required field dest is reset to its zero value.
//
//	var cfg MyConfig
//	err := GetConfigFromEnvVars(&cfg)
func GetConfigFromEnvVars[T any](dest *T) error {
	val := reflect.ValueOf(dest).Elem()
	set := make(map[string]bool)
	if err := applyEnv(val, val.Type(), set); err != nil {
		return err
	}
	if err := applyDefaults(val, val.Type(), set); err != nil {
		var zero T
		*dest = zero
		return err
	}
	return validate(*dest)
}

// GetConfig loads configuration from a YAML file, then overlays environment
// variables. ${VAR} references in the file are expanded from the
// environment before parsing. An empty filepath uses the environment only;
// allowFileErrors falls back to it when the file cannot be read or parsed.
//
//	var cfg MyConfig
//	err := GetConfig(&cfg, "config.yaml", true)
func GetConfig[T any](dest *T, filepath string, allowFileErrors bool) error {
	if filepath == "" {
		return GetConfigFromEnvVars(dest)
	}
	data, err := os.ReadFile(filepath)
	if err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to read file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), dest); err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	return GetConfigFromEnvVars(dest)
}
