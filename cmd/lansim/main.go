// lansim simulates ICMP reachability events over small switched LAN
// topologies and replays finished runs as narrated traffic captures.
package main

func main() {
	Execute()
}
