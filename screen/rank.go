// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package screen

import "sort"

// Rank assigns competition ranks to values: tied values share the lowest
// rank in their tie group and the next distinct value's rank skips ahead by
// the tie-group size (1, 2, 2, 4, ...). With descending set, higher values
// rank better; otherwise lower values rank better. The returned slice is
// aligned with the input.
func Rank(values []float64, descending bool) []int {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}

	sort.Slice(order, func(a, b int) bool {
		if descending {
			return values[order[a]] > values[order[b]]
		}
		return values[order[a]] < values[order[b]]
	})

	ranks := make([]int, len(values))
	for i := 0; i < len(order); {
		j := i
		for j < len(order) && values[order[j]] == values[order[i]] {
			j++
		}
		for k := i; k < j; k++ {
			ranks[order[k]] = i + 1
		}
		i = j
	}

	return ranks
}

// rankInts ranks integer scores ascending with the same competition rule.
func rankInts(values []int) []int {
	asFloat := make([]float64, len(values))
	for i, v := range values {
		asFloat[i] = float64(v)
	}
	return Rank(asFloat, false)
}
