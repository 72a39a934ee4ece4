// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package limiter

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestAcquireOnBehalfOf_RespectsCapacity(t *testing.T) {
	l := New(intPtr(2))

	assert.True(t, l.AcquireOnBehalfOf("a"))
	assert.True(t, l.AcquireOnBehalfOf("b"))
	assert.False(t, l.AcquireOnBehalfOf("c"))
	assert.Equal(t, 2, l.Occupied())
}

func TestAcquireOnBehalfOf_ReAcquireSameIDIsNoopSuccess(t *testing.T) {
	l := New(intPtr(1))

	assert.True(t, l.AcquireOnBehalfOf("a"))
	assert.True(t, l.AcquireOnBehalfOf("a"))
	assert.Equal(t, 1, l.Occupied())
}

func TestReleaseOnBehalfOf_UnknownIDIsNoop(t *testing.T) {
	l := New(intPtr(1))
	l.ReleaseOnBehalfOf("never-acquired")
	assert.Equal(t, 0, l.Occupied())
}

func TestReleaseOnBehalfOf_FreesSlotForNextAcquire(t *testing.T) {
	l := New(intPtr(2))

	assert.True(t, l.AcquireOnBehalfOf("a"))
	assert.True(t, l.AcquireOnBehalfOf("b"))
	assert.False(t, l.AcquireOnBehalfOf("c"))

	l.ReleaseOnBehalfOf("a")
	assert.True(t, l.AcquireOnBehalfOf("c"))
	assert.Equal(t, 2, l.Occupied())
}

func TestNew_NilOrNonPositiveCapacityIsUnlimited(t *testing.T) {
	l := New(nil)
	for i := 0; i < 100; i++ {
		assert.True(t, l.AcquireOnBehalfOf("run-"+strconv.Itoa(i)))
	}

	_, unlimited := l.Capacity()
	assert.True(t, unlimited)

	for _, c := range []int{0, -1} {
		l = New(intPtr(c))
		assert.True(t, l.AcquireOnBehalfOf("a"))
		assert.True(t, l.AcquireOnBehalfOf("b"))
		_, unlimited = l.Capacity()
		assert.True(t, unlimited)
	}
}
