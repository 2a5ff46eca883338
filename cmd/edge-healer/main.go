// Command edge-healer runs the per-node pod-restore agent.
package main

func main() {
	Execute()
}
