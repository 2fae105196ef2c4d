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

package repository

import (
	"context"

	"github.com/tomoncle/packwork/types"
	"github.com/uptrace/bun"
)

// Selector shapes a select before its rows are scanned, usually by
// choosing columns or expressions.
type Selector func(q *bun.SelectQuery) *bun.SelectQuery

// PageAs pages over the table of T and scans each row into R. The total is
// counted from the filtered query before selector runs. A nil selector
// selects the full row.
func PageAs[T any, R any](ctx context.Context, repo Repository[T], pageRequest *types.PageRequest, selector Selector) (*types.Pagination[R], error) {
	if pageRequest == nil {
		pageRequest = types.NewDefaultPageRequest(1, 1)
	}
	pagination := types.NewDefaultPagination[R](pageRequest.GetPage(), pageRequest.GetPageSize())

	total, err := repo.Count(ctx, pageRequest.GetFilter())
	if err != nil || total == 0 {
		return pagination, err
	}

	query := repo.Where(pageRequest.GetFilter())
	if selector != nil {
		query = selector(query)
	}
	items := make([]*R, 0)
	err = query.
		Order(pageRequest.GetOrders()...).
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetLimit()).
		Scan(ctx, &items)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = items
	return pagination, nil
}
