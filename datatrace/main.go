// Command datatrace replays memory access traces through a simulated
// inclusive cache hierarchy.
package main

import "github.com/Shihao-Song/Pin-Tools/datatrace/cmd"

func main() {
	cmd.Execute()
}
