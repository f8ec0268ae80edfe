package tool

import (
	"fmt"
	"reflect"
	"strconv"

	apperrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// WorkerRequest is the only thing that crosses the boundary into an isolated
// worker. Handlers are identified by name; no code is ever serialized.
type WorkerRequest struct {
	RequestID string         `json:"requestId"`
	ToolName  string         `json:"toolName"`
	Input     map[string]any `json:"input"`
}

// WorkerResponse is what the worker sends back.
type WorkerResponse struct {
	RequestID string         `json:"requestId"`
	Success   bool           `json:"success"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// AssertTransportable verifies a payload can cross the worker boundary:
// every reachable value must survive JSON serialization. Functions,
// channels, complex numbers, and unsafe pointers are rejected with the
// property path that holds them, so the caller gets a usable diagnostic
// instead of a marshal failure deep inside the transport.
func AssertTransportable(v any) error {
	return checkTransportable(reflect.ValueOf(v), "$")
}

func checkTransportable(rv reflect.Value, path string) error {
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return apperrors.NewSafetyError(
			fmt.Sprintf("payload is not transportable: %s value at %s", rv.Kind(), path))
	case reflect.Interface, reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return checkTransportable(rv.Elem(), path)
	case reflect.Map:
		for _, key := range rv.MapKeys() {
			keyPath := path + "." + fmt.Sprint(key.Interface())
			if key.Kind() != reflect.String && !(key.Kind() == reflect.Interface && key.Elem().Kind() == reflect.String) {
				return apperrors.NewSafetyError("payload is not transportable: non-string map key at " + path)
			}
			if err := checkTransportable(rv.MapIndex(key), keyPath); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := checkTransportable(rv.Index(i), path+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := checkTransportable(rv.Field(i), path+"."+t.Field(i).Name); err != nil {
				return err
			}
		}
	}
	return nil
}
