/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package mpool

import "github.com/pkg/errors"

var (
	// ErrInvalidArgument reports an unknown or uncreated pool, an unsupported
	// algorithm or a range that matches no configured region.
	ErrInvalidArgument = errors.New("mpool: invalid argument")

	// ErrAccessViolation reports a pointer that does not designate a live
	// allocation inside the pool.
	ErrAccessViolation = errors.New("mpool: access violation")

	// ErrResourceExhausted reports a request larger than the pool or a pool
	// with no free block big enough.
	ErrResourceExhausted = errors.New("mpool: resource exhausted")
)

// Status is an errno-style code that callers can switch on.
type Status int

// Status codes returned by Code.
const (
	StatusOK      Status = 0
	StatusNoMem   Status = 12 // ENOMEM
	StatusFault   Status = 14 // EFAULT
	StatusInvalid Status = 22 // EINVAL
	StatusUnknown Status = -1
)

// Code maps an error returned by this package to its Status.
func Code(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return StatusInvalid
	case errors.Is(err, ErrAccessViolation):
		return StatusFault
	case errors.Is(err, ErrResourceExhausted):
		return StatusNoMem
	}
	return StatusUnknown
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNoMem:
		return "ENOMEM"
	case StatusFault:
		return "EFAULT"
	case StatusInvalid:
		return "EINVAL"
	}
	return "UNKNOWN"
}
