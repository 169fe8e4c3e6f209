// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package process

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zeebo/errs"
	yaml "gopkg.in/yaml.v2"
)

// SaveConfig writes the settings of cmd to outfile as YAML. A flag is saved
// when it was changed, is annotated as a user flag or is named in overrides.
// Setup and hidden flags are never saved. Values in overrides win.
func SaveConfig(cmd *cobra.Command, outfile string, overrides map[string]interface{}) error {
	vip, err := Viper(cmd)
	if err != nil {
		return err
	}

	settings := map[string]interface{}{}
	collect := func(f *pflag.Flag) {
		if f.Name == "config" || annotated(f, "setup") || annotated(f, "hidden") {
			return
		}
		if f.Changed || annotated(f, "user") {
			settings[f.Name] = vip.Get(f.Name)
		}
	}
	cmd.Flags().VisitAll(collect)
	cmd.InheritedFlags().VisitAll(collect)
	for key, value := range overrides {
		settings[key] = value
	}

	var data []byte
	if len(settings) > 0 {
		data, err = yaml.Marshal(nest(settings))
		if err != nil {
			return Error.Wrap(err)
		}
	}
	return Error.Wrap(writeFileAtomic(outfile, data))
}

// nest turns dotted keys into nested maps, the layout loadConfig reads.
func nest(flat map[string]interface{}) map[string]interface{} {
	root := map[string]interface{}{}
	for key, value := range flat {
		parts := strings.Split(key, ".")
		m := root
		for _, part := range parts[:len(parts)-1] {
			child, ok := m[part].(map[string]interface{})
			if !ok {
				child = map[string]interface{}{}
				m[part] = child
			}
			m = child
		}
		m[parts[len(parts)-1]] = value
	}
	return root
}

func annotated(f *pflag.Flag, key string) bool {
	values := f.Annotations[key]
	return len(values) > 0 && values[0] == "true"
}

// writeFileAtomic replaces path with data, leaving either the old or the new
// content behind.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, os.Remove(tmp.Name()))
		}
	}()

	_, err = tmp.Write(data)
	if err = errs.Combine(err, tmp.Sync(), tmp.Close()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
