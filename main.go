// SPDX-License-Identifier: MPL-2.0

package main

import (
	cmd "github.com/modhost/modhost/cmd/modhost"

	_ "github.com/modhost/modhost/modules/echo"
	_ "github.com/modhost/modhost/modules/ping"
)

func main() {
	cmd.Execute()
}
