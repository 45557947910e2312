package shared

import "reflect"

// CloneAnyMap performs a deep clone of a map[string]any. Task inputs and
// prediction outputs are handed out by value so callers can never mutate a
// stored record through a retained reference.
func CloneAnyMap(source map[string]any) map[string]any {
	if source == nil {
		return nil
	}
	cloned, ok := cloneValue(reflect.ValueOf(source)).Interface().(map[string]any)
	if !ok {
		return nil
	}
	return cloned
}

// CloneStringMap returns a shallow copy of a map[string]string.
func CloneStringMap(source map[string]string) map[string]string {
	if source == nil {
		return nil
	}
	cloned := make(map[string]string, len(source))
	for k, v := range source {
		cloned[k] = v
	}
	return cloned
}

// CloneFloats returns a copy of a float64 slice.
func CloneFloats(source []float64) []float64 {
	if source == nil {
		return nil
	}
	cloned := make([]float64, len(source))
	copy(cloned, source)
	return cloned
}

// CloneFloatMatrix returns a deep copy of a 2D float64 slice.
func CloneFloatMatrix(source [][]float64) [][]float64 {
	if source == nil {
		return nil
	}
	cloned := make([][]float64, len(source))
	for i, row := range source {
		cloned[i] = CloneFloats(row)
	}
	return cloned
}

func cloneValue(value reflect.Value) reflect.Value {
	if !value.IsValid() {
		return value
	}

	switch value.Kind() {
	case reflect.Map:
		if value.IsNil() {
			return reflect.Zero(value.Type())
		}
		clonedMap := reflect.MakeMapWithSize(value.Type(), value.Len())
		for _, key := range value.MapKeys() {
			clonedMap.SetMapIndex(key, cloneValue(value.MapIndex(key)))
		}
		return clonedMap

	case reflect.Slice:
		if value.IsNil() {
			return reflect.Zero(value.Type())
		}
		clonedSlice := reflect.MakeSlice(value.Type(), value.Len(), value.Len())
		for i := 0; i < value.Len(); i++ {
			clonedSlice.Index(i).Set(cloneValue(value.Index(i)))
		}
		return clonedSlice

	case reflect.Interface:
		if value.IsNil() {
			return reflect.Zero(value.Type())
		}
		cloned := cloneValue(value.Elem())
		result := reflect.New(value.Type()).Elem()
		result.Set(cloned)
		return result

	case reflect.Ptr:
		if value.IsNil() {
			return reflect.Zero(value.Type())
		}
		cloned := reflect.New(value.Type().Elem())
		cloned.Elem().Set(cloneValue(value.Elem()))
		return cloned

	default:
		return value
	}
}
