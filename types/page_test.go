/*
 * Copyright 2025 tomoncle.
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

package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequestClamping(t *testing.T) {
	cases := []struct {
		page, size               int
		wantPage, wantSize, skip int
	}{
		{page: 1, size: 10, wantPage: 1, wantSize: 10, skip: 0},
		{page: 3, size: 20, wantPage: 3, wantSize: 20, skip: 40},
		{page: 0, size: 10, wantPage: 1, wantSize: 10, skip: 0},
		{page: -5, size: 10, wantPage: 1, wantSize: 10, skip: 0},
		{page: 2, size: 0, wantPage: 2, wantSize: 1, skip: 1},
		{page: 4, size: -3, wantPage: 4, wantSize: 1, skip: 3},
		{page: 0, size: 0, wantPage: 1, wantSize: 1, skip: 0},
	}
	for _, tc := range cases {
		req := NewDefaultPageRequest(tc.page, tc.size)
		assert.Equal(t, tc.wantPage, req.GetPage(), "page %d", tc.page)
		assert.Equal(t, tc.wantSize, req.GetPageSize(), "size %d", tc.size)
		assert.Equal(t, tc.skip, req.GetOffset())
		assert.Equal(t, tc.wantSize, req.GetLimit())
	}
}

func TestPageRequestNeverNegative(t *testing.T) {
	for page := -3; page <= 3; page++ {
		for size := -3; size <= 3; size++ {
			req := NewDefaultPageRequest(page, size)
			assert.GreaterOrEqual(t, req.GetOffset(), 0)
			assert.GreaterOrEqual(t, req.GetLimit(), 1)
		}
	}

	for _, tc := range []struct{ page, size, want int }{
		{math.MaxInt, 2, math.MaxInt},
		{math.MaxInt, math.MaxInt, math.MaxInt},
		{2, math.MaxInt, math.MaxInt},
		{math.MaxInt/2 + 1, 2, math.MaxInt - 1},
		{3, math.MinInt, 2},
	} {
		req := NewDefaultPageRequest(tc.page, tc.size)
		assert.Equal(t, tc.want, req.GetOffset(), "page=%d size=%d", tc.page, tc.size)
	}
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "name ASC", OrderBy("name", true))
	assert.Equal(t, "created_at DESC", OrderBy("created_at", false))

	req := NewPageRequestWithOrders(1, 5, []string{OrderBy("id", false)})
	assert.Equal(t, []string{"id DESC"}, req.GetOrders())
	assert.Nil(t, req.GetFilter())
}

func TestQueryFilter(t *testing.T) {
	f := NewQueryFilter("name = ? AND age > ?", "bob", 3)
	assert.False(t, f.IsEmpty())
	assert.Equal(t, []interface{}{"bob", 3}, f.Args)

	var nilFilter *QueryFilter
	assert.True(t, nilFilter.IsEmpty())
	assert.True(t, NewQueryFilter("  ").IsEmpty())
}

func TestPagination(t *testing.T) {
	p := NewDefaultPagination[int](2, 10)
	assert.Empty(t, p.Items)
	assert.Equal(t, 0, p.TotalPages())

	p.Total = 21
	assert.Equal(t, 3, p.TotalPages())
	assert.True(t, p.HasNext())
	p.Page = 3
	assert.False(t, p.HasNext())
}
