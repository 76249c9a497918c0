// Package errors provides structured, coded errors for filterbind.
//
// Every error carries a code (e.g. "F001") that maps to a short message, a
// longer explanation and a category. Library code that deals with values
// read from a URL never returns these errors; malformed input is coerced
// instead. They are raised by the outer layers: configuration loading, the
// websocket protocol and navigation to an unparsable href.
//
// # Usage
//
//	err := errors.New("F002").WithDetail(`no filter named "colour"`)
//	fmt.Println(err.Format())
//	// ERROR F002: Unknown filter
//	//
//	//   no filter named "colour"
//
// Errors built from the registry compare equal under errors.Is when their
// codes match, so callers can test for a class of failure:
//
//	if errors.Is(err, errors.New("F010")) { ... }
package errors
