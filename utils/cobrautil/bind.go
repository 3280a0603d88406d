// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cobrautil

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var envReplacer = strings.NewReplacer(".", "_", "-", "_") //nolint:gochecknoglobals // false positive

// BindAll updates the given command flags with values from the environment variables and config file.
// The supported formats are: JSON, YAML, TOML, HCL, and Java properties.
// The file format is determined by the file extension, if not specified the default format is YAML.
// The following precedence order of configuration sources is used: command flags, environment variables, config file, default values.
func BindAll(cmd *cobra.Command, envPrefix, configFileFlagName string) error {
	v := viper.New()

	// Flags
	if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
		return err
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Environment variables
	v.SetEnvKeyReplacer(envReplacer)
	envPrefix = strings.ToUpper(envPrefix)
	envPrefix = envReplacer.Replace(envPrefix)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	// Config file
	if configFileFlagName != "" {
		if f := v.GetString(configFileFlagName); f != "" {
			v.SetConfigType("yaml")
			v.SetConfigFile(f)
			if err := v.ReadInConfig(); err != nil {
				return err
			}
		}
	}

	// Update cobra flags with values from viper
	updateFs := func(fs *pflag.FlagSet) (ok bool) {
		ok = true
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Changed || !v.IsSet(f.Name) {
				return
			}
			if err := setFlag(f, v.Get(f.Name)); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "invalid value for %s: %s\n", f.Name, err)
				ok = false
				return
			}
			f.Changed = true
		})
		return
	}

	if !updateFs(cmd.PersistentFlags()) {
		return fmt.Errorf("failed to update persistent flags")
	}

	if !updateFs(cmd.Flags()) {
		return fmt.Errorf("failed to update flags")
	}

	return nil
}

// setFlag sets the flag from a config file or environment value.
// Lists from config files are passed item by item, so items may contain spaces and commas.
// Environment values are strings, slice flags split them on commas.
func setFlag(f *pflag.Flag, val any) error {
	items, isList := val.([]any)
	if !isList {
		return f.Value.Set(fmt.Sprint(val))
	}

	strs := make([]string, len(items))
	for i := range items {
		strs[i] = fmt.Sprint(items[i])
	}

	if sv, ok := f.Value.(pflag.SliceValue); ok {
		return sv.Replace(strs)
	}

	return f.Value.Set(strings.Join(strs, ","))
}
