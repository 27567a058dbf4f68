// SPDX-License-Identifier: MPL-2.0

// Package testutil provides shared test helpers. FakeClock stands in for
// time.Now where a component accepts a clock function.
package testutil
