package main

import "github.com/zhuweiyou/rttiscanner/cmd/rttiscan/cmd"

func main() {
	cmd.Execute()
}
