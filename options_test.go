package cmpkit

import (
	"reflect"
	"testing"
)

func TestCoerceProp(t *testing.T) {
	tests := []struct {
		name    string
		v       any
		kind    reflect.Kind
		want    any
		wantErr bool
	}{
		{name: "same kind", v: 3, kind: reflect.Int, want: 3},
		{name: "untyped", v: "x", kind: reflect.Interface, want: "x"},
		{name: "string to int", v: "3", kind: reflect.Int, want: 3},
		{name: "string to int8", v: "-7", kind: reflect.Int8, want: int8(-7)},
		{name: "string to uint32", v: "42", kind: reflect.Uint32, want: uint32(42)},
		{name: "string to float", v: "1.5", kind: reflect.Float64, want: 1.5},
		{name: "string to bool", v: "true", kind: reflect.Bool, want: true},
		{name: "int64 to int", v: int64(2), kind: reflect.Int, want: 2},
		{name: "int to float32", v: 2, kind: reflect.Float32, want: float32(2)},
		{name: "fraction to int", v: "1.5", kind: reflect.Int, wantErr: true},
		{name: "negative to uint", v: -1, kind: reflect.Uint16, wantErr: true},
		{name: "garbage to int", v: "abc", kind: reflect.Int, wantErr: true},
		{name: "number to bool", v: 1, kind: reflect.Bool, wantErr: true},
		{name: "number to string", v: 5, kind: reflect.String, wantErr: true},
		{name: "map to int", v: map[string]any{}, kind: reflect.Int, wantErr: true},
		{name: "unsupported kind", v: "x", kind: reflect.Slice, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceProp(tt.v, tt.kind)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("coerceProp(%v, %s) = %v, want error", tt.v, tt.kind, got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("coerceProp(%v, %s) = %#v, want %#v", tt.v, tt.kind, got, tt.want)
			}
		})
	}
}
