// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package av1

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/cnotch/av1parser/utils/bits"
	"github.com/cnotch/xlog"
)

// 解析错误
var (
	ErrTruncated      = errors.New("av1: truncated bitstream")
	ErrCorrupt        = errors.New("av1: corrupt bitstream")
	ErrUnknownOBU     = errors.New("av1: unknown obu type")
	ErrUnsupported    = errors.New("av1: unsupported bitstream")
	ErrRefUnavailable = errors.New("av1: reference frame unavailable")
	ErrConformance    = errors.New("av1: bitstream conformance violation")
)

// syntaxError carries an error out of a nested syntax decoder by panic.
type syntaxError struct{ err error }

func throw(err error) { panic(syntaxError{err}) }

func throwf(base error, format string, args ...interface{}) {
	throw(fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...)))
}

// catch converts a panic raised inside a Decode into err.
func catch(what string, err *error) {
	r := recover()
	if r == nil {
		return
	}

	switch e := r.(type) {
	case syntaxError:
		*err = e.err
	case error:
		if e == bits.ErrOutOfRange {
			*err = fmt.Errorf("%s: %w", what, ErrTruncated)
			return
		}
		*err = fmt.Errorf("%s decode panic；r = %v \n %s", what, r, debug.Stack())
	default:
		*err = fmt.Errorf("%s decode panic；r = %v \n %s", what, r, debug.Stack())
	}
}

// Policy 码流一致性检查失败时的处理策略
type Policy int

// Policy values
const (
	PolicyWarn   Policy = iota // 记录警告并继续
	PolicyStrict               // 作为解码错误，丢弃当前帧
)

// ParsePolicy parses "warn" or "strict".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn":
		return PolicyWarn, nil
	case "strict":
		return PolicyStrict, nil
	}
	return PolicyWarn, fmt.Errorf("unknown conformance policy: %s", s)
}

func (p Policy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "warn"
}

// Checker reports conformance violations that do not prevent parsing.
type Checker struct {
	Policy Policy
	Logger *xlog.Logger
}

func (c *Checker) logger() *xlog.Logger {
	if c == nil || c.Logger == nil {
		return xlog.L()
	}
	return c.Logger
}

// violation logs the problem, or aborts the current decode under PolicyStrict.
func (c *Checker) violation(format string, args ...interface{}) {
	if c != nil && c.Policy == PolicyStrict {
		throwf(ErrConformance, format, args...)
	}
	c.logger().Warnf("av1 conformance: "+format, args...)
}
