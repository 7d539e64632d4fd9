// Package indenter builds indented multi-line renderings of nested
// structures, used by String methods. A rendering is built in one
// expression:
//
//	Indenter().Start("arena {").NestStrings(lines...).End("}")
//
// A single nested entry stays on the opening line.
package indenter

import (
	"fmt"
	"strings"
)

type indenter struct{}

func Indenter() indenter {
	return indenter{}
}

var (
	_buffer string
	_level  int
)

func indent() string {
	return strings.Repeat("  ", _level)
}

func (indenter) Start(str string) indenter {
	_buffer = str
	return Indenter()
}

type stringableString string

func (s stringableString) String() string {
	return string(s)
}

func (i indenter) NestStrings(strs ...string) indenter {
	return i.NestStringsSep("", strs...)
}

func (i indenter) NestStringsSep(sep string, strs ...string) indenter {
	stringers := make([]fmt.Stringer, len(strs))
	for i, v := range strs {
		stringers[i] = stringableString(v)
	}
	return i.NestSep(sep, stringers...)
}

func (indenter) NestSep(sep string, strs ...fmt.Stringer) indenter {
	if len(strs) == 1 {
		_buffer += strs[0].String()
		return Indenter()
	}

	_level++
	for i, str := range strs {
		_buffer += "\n" + indent() + str.String()
		if i < len(strs)-1 {
			_buffer += sep
		}
	}
	_level--
	_buffer += "\n"
	return Indenter()
}

func (indenter) End(str string) string {
	res := _buffer + str
	if _buffer[len(_buffer)-1] == '\n' {
		res = _buffer + indent() + str
	}
	_buffer = ""
	return res
}
