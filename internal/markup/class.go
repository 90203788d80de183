package markup

import "strings"

// Class is the severity class a console assigns to a line for styling.
type Class string

// Line classes, in the order they are probed.
const (
	ClassNone     Class = ""
	ClassDebug    Class = "debug"
	ClassInfo     Class = "info"
	ClassWarning  Class = "warning"
	ClassError    Class = "error"
	ClassCritical Class = "critical"
)

var classOrder = []Class{ClassDebug, ClassInfo, ClassWarning, ClassError, ClassCritical}

// ClassOf returns the first class whose name appears in the lowercased plain text.
func ClassOf(plain string) Class {
	lower := strings.ToLower(plain)

	for _, class := range classOrder {
		if strings.Contains(lower, string(class)) {
			return class
		}
	}

	return ClassNone
}
