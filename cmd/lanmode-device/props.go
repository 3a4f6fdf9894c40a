package main

import (
	"fmt"
	"strings"

	"github.com/yuvaraj-ayla/lanmode/pkg/devicesim"
)

// parseProps parses "name:type[:ack]" entries separated by commas.
func parseProps(s string) ([]devicesim.Property, error) {
	var props []devicesim.Property
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
			return nil, fmt.Errorf("bad property %q (want name:type[:ack])", entry)
		}
		p := devicesim.Property{Name: parts[0], BaseType: parts[1], Value: zeroValue(parts[1])}
		if len(parts) == 3 {
			if parts[2] != "ack" {
				return nil, fmt.Errorf("bad property flag %q in %q", parts[2], entry)
			}
			p.AckEnabled = true
		}
		props = append(props, p)
	}
	return props, nil
}

func zeroValue(baseType string) any {
	switch baseType {
	case "boolean", "integer":
		return 0
	case "decimal":
		return 0.0
	default:
		return ""
	}
}
