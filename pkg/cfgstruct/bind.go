// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package cfgstruct binds configuration structs to command line flags.
//
// Every exported field becomes a flag named after the field in snake case,
// nested structs add a dotted prefix. The `help` tag is the usage text and
// the `default` tag the default value. Fields tagged `hidden:"true"`,
// `setup:"true"` or `user:"true"` get the matching flag annotation.
package cfgstruct

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/pflag"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Bind registers a flag for every field of config, which must be a pointer to
// a struct. It panics on unsupported field types and malformed defaults.
func Bind(flags *pflag.FlagSet, config interface{}) {
	ptr := reflect.ValueOf(config)
	if ptr.Kind() != reflect.Ptr || ptr.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("invalid config type: %T, expected pointer to struct", config))
	}
	bindStruct(flags, "", ptr.Elem())
}

func bindStruct(flags *pflag.FlagSet, prefix string, val reflect.Value) {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.PkgPath != "" {
			continue
		}
		name := prefix + snakeCase(field.Name)
		fieldVal := val.Field(i)

		if field.Type.Kind() == reflect.Struct && field.Type != durationType {
			bindStruct(flags, name+".", fieldVal)
			continue
		}

		help := field.Tag.Get("help")
		def := field.Tag.Get("default")
		ptr := fieldVal.Addr().Interface()

		switch field.Type {
		case durationType:
			flags.DurationVar(ptr.(*time.Duration), name, mustParse(name, def, func(s string) (time.Duration, error) {
				return time.ParseDuration(s)
			}), help)
		default:
			switch field.Type.Kind() {
			case reflect.String:
				flags.StringVar(ptr.(*string), name, def, help)
			case reflect.Bool:
				flags.BoolVar(ptr.(*bool), name, mustParse(name, def, strconv.ParseBool), help)
			case reflect.Int:
				flags.IntVar(ptr.(*int), name, mustParse(name, def, strconv.Atoi), help)
			case reflect.Int64:
				flags.Int64Var(ptr.(*int64), name, mustParse(name, def, func(s string) (int64, error) {
					return strconv.ParseInt(s, 0, 64)
				}), help)
			case reflect.Float64:
				flags.Float64Var(ptr.(*float64), name, mustParse(name, def, func(s string) (float64, error) {
					return strconv.ParseFloat(s, 64)
				}), help)
			case reflect.Slice:
				if field.Type.Elem().Kind() != reflect.String {
					panic(fmt.Sprintf("invalid field type for %s: %s", name, field.Type))
				}
				var values []string
				if def != "" {
					values = strings.Split(def, ",")
				}
				flags.StringSliceVar(ptr.(*[]string), name, values, help)
			default:
				panic(fmt.Sprintf("invalid field type for %s: %s", name, field.Type))
			}
		}

		for _, annotation := range []string{"hidden", "setup", "user"} {
			if field.Tag.Get(annotation) == "true" {
				if err := flags.SetAnnotation(name, annotation, []string{"true"}); err != nil {
					panic(err)
				}
			}
		}
		if field.Tag.Get("hidden") == "true" {
			if err := flags.MarkHidden(name); err != nil {
				panic(err)
			}
		}
	}
}

// mustParse parses a default value, an empty default is the zero value.
func mustParse[T any](name, def string, parse func(string) (T, error)) T {
	var zero T
	if def == "" {
		return zero
	}
	v, err := parse(def)
	if err != nil {
		panic(fmt.Sprintf("invalid default value for %s: %q: %v", name, def, err))
	}
	return v
}

// snakeCase converts a Go field name like DatabaseURL to database_url.
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
