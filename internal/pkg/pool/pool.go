// SPDX-License-Identifier: AGPL-3.0-only
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>

package pool

import (
	"sync"
)

// Pool is a sync.Pool that only holds values of T.
type Pool[T any] struct {
	pool sync.Pool
}

func New[T any](fn func() T) *Pool[T] {
	if fn == nil {
		panic("missing new function")
	}

	p := &Pool[T]{}
	p.pool.New = func() any { return fn() }

	return p
}

//nolint:forcetypeassert
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(t T) {
	p.pool.Put(t)
}

// With runs fn with a value from the pool and returns it afterward.
func (p *Pool[T]) With(fn func(T)) {
	v := p.Get()
	defer p.Put(v)

	fn(v)
}
