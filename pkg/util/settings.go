/*
   Aphid - Apple parallel port hard drive emulator
   Copyright (c) 2022, The Aphid Authors

   This file is part of Aphid.

   Aphid is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Aphid is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Aphid. If not, see <http://www.gnu.org/licenses/>.
*/

package util

import (
	"fmt"
	"sync"
)

//
func NewSetting(key string, value interface{}) *Setting {
	return &Setting{key: key, value: value}
}

/*
	Setting is a named value that can be changed at runtime, for example via
	the control API. Its type is fixed by the initial value. Settings are safe
	for concurrent use.
*/
type Setting struct {
	key   string
	value interface{}
	mutex sync.RWMutex
}

//
func (s *Setting) Key() string {
	return s.key
}

//
func (s *Setting) Value() interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.value
}

// Set changes the value. The new value must have the same type as the
// current one.
func (s *Setting) Set(value interface{}) error {

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if fmt.Sprintf("%T", value) != fmt.Sprintf("%T", s.value) {
		return fmt.Errorf("setting %s needs a value of type %T, not %T",
			s.key, s.value, value)
	}

	s.value = value
	return nil
}

//
func (s *Setting) IsBool() bool {
	_, ok := s.Value().(bool)
	return ok
}

//
func (s *Setting) Bool() bool {
	if v, ok := s.Value().(bool); ok {
		return v
	}
	return false
}

//
func (s *Setting) IsInt() bool {
	_, ok := s.Value().(int)
	return ok
}

//
func (s *Setting) Int() int {
	if v, ok := s.Value().(int); ok {
		return v
	}
	return 0
}

//
func (s *Setting) String() string {
	return fmt.Sprintf("%v", s.Value())
}
