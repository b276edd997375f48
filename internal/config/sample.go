package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrExists is returned by GenerateSample when the target file exists.
var ErrExists = errors.New("config file already exists")

// Sample renders the toml-tagged fields of opts as a TOML document, one
// table per dotted prefix, with each field's help tag as a comment.
func Sample(opts any) ([]byte, error) {
	v := reflect.ValueOf(opts)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("config: expected struct, got %T", opts)
	}
	t := v.Type()

	type entry struct {
		key  string
		help string
		line string
	}
	tables := make(map[string][]entry)

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		path := sf.Tag.Get("toml")
		if path == "" {
			continue
		}
		table, key, ok := strings.Cut(path, ".")
		if !ok {
			return nil, fmt.Errorf("config: field %s: toml path %q has no table", sf.Name, path)
		}

		value, err := toml.Marshal(map[string]any{key: v.Field(i).Interface()})
		if err != nil {
			return nil, fmt.Errorf("config: field %s: %w", sf.Name, err)
		}
		tables[table] = append(tables[table], entry{
			key:  key,
			help: sf.Tag.Get("help"),
			line: strings.TrimSpace(string(value)),
		})
	}

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteString("# relaynode configuration\n")
	for _, name := range names {
		fmt.Fprintf(&buf, "\n[%s]\n", name)
		for _, e := range tables[name] {
			if e.help != "" {
				fmt.Fprintf(&buf, "# %s\n", e.help)
			}
			buf.WriteString(e.line)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// GenerateSample writes Sample(opts) to path. An existing file is only
// replaced when overwrite is set.
func GenerateSample(path string, opts any, overwrite bool) error {
	data, err := Sample(opts)
	if err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
