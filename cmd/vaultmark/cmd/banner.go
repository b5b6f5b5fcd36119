package cmd

import (
	"fmt"
)

const banner = `
__     __          _ _   __  __            _
\ \   / /_ _ _   _| | |_|  \/  | __ _ _ __| | __
 \ \ / / _` + "`" + ` | | | | | __| |\/| |/ _` + "`" + ` | '__| |/ /
  \ V / (_| | |_| | | |_| |  | | (_| | |  |   <
   \_/ \__,_|\__,_|_|\__|_|  |_|\__,_|_|  |_|\_\

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Credential Lifecycle Engine - Version %s\x1b[0m\n\n", Version)
}
