package main

import (
	"fmt"
	"strconv"
	"strings"
)

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func formatFloatPtr(value *float64) string {
	if value == nil {
		return "-"
	}
	return formatFloat(*value)
}

func formatBound(min, max *float64) string {
	if min == nil && max == nil {
		return "-"
	}
	return fmt.Sprintf("%s ~ %s", formatFloatPtr(min), formatFloatPtr(max))
}

func joinLots(lots []string) string {
	if len(lots) == 0 {
		return "-"
	}
	return strings.Join(lots, ", ")
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

// parsePairFlag splits "before,after" into a two-element weight pair.
func parsePairFlag(raw string) ([2]string, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return [2]string{}, fmt.Errorf("pair %q must be two comma-separated values", raw)
	}
	return [2]string{strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])}, nil
}

// parseBucketFlag splits "mesh=v1,v2" into a mesh size and up to two values.
func parseBucketFlag(raw string) (mesh, value1, value2 string, err error) {
	mesh, rest, found := strings.Cut(raw, "=")
	mesh = strings.TrimSpace(mesh)
	if !found || mesh == "" {
		return "", "", "", fmt.Errorf("bucket %q must look like mesh=value1,value2", raw)
	}
	values := strings.Split(rest, ",")
	if len(values) > 2 {
		return "", "", "", fmt.Errorf("bucket %q has more than two values", raw)
	}
	value1 = strings.TrimSpace(values[0])
	if len(values) == 2 {
		value2 = strings.TrimSpace(values[1])
	}
	return mesh, value1, value2, nil
}

// parseMainWeightFlag splits "powder=weight" for pre-weighed main powders.
func parseMainWeightFlag(raw string) (string, float64, error) {
	name, rest, found := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !found || name == "" {
		return "", 0, fmt.Errorf("main weight %q must look like powder=weight", raw)
	}
	weight, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return "", 0, fmt.Errorf("main weight %q: %w", raw, err)
	}
	return name, weight, nil
}
