package domain

import "fmt"

type EngineType string

const (
	EngineNative EngineType = "native"
	EngineDuckDB EngineType = "duckdb"
)

func ParseEngineType(s string) (EngineType, error) {
	switch EngineType(s) {
	case EngineNative, "":
		return EngineNative, nil
	case EngineDuckDB:
		return EngineDuckDB, nil
	}
	return "", fmt.Errorf("unknown profiler engine %q", s)
}
