package classfile

import (
	"fmt"
	"strings"
)

// ParamCount returns the number of parameters in a method descriptor.
func ParamCount(descriptor string) (int, error) {
	// Parse between ( and )
	start := strings.Index(descriptor, "(")
	end := strings.Index(descriptor, ")")
	if start != 0 || end == -1 {
		return 0, fmt.Errorf("invalid method descriptor: %s", descriptor)
	}

	params := descriptor[start+1 : end]
	count := 0
	i := 0
	for i < len(params) {
		// Array: skip dimensions, then count the element type
		for i < len(params) && params[i] == '[' {
			i++
		}
		if i >= len(params) {
			return 0, fmt.Errorf("truncated array type in %s", descriptor)
		}
		switch params[i] {
		case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
			i++
		case 'L':
			semi := strings.IndexByte(params[i:], ';')
			if semi == -1 {
				return 0, fmt.Errorf("unterminated class type in %s", descriptor)
			}
			i += semi + 1
		default:
			return 0, fmt.Errorf("invalid type descriptor char '%c' in %s", params[i], descriptor)
		}
		count++
	}
	return count, nil
}

// PrependParam returns descriptor with an extra leading parameter of the
// class type owner, as when an instance method becomes a static one that
// takes its receiver explicitly.
func PrependParam(descriptor, owner string) (string, error) {
	if !strings.HasPrefix(descriptor, "(") {
		return "", fmt.Errorf("invalid method descriptor: %s", descriptor)
	}
	return "(L" + owner + ";" + descriptor[1:], nil
}
