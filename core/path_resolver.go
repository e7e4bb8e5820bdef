package core

import "github.com/signalsfoundry/lan-simulator/model"

// maxPathHops bounds the traversal so a malformed connection list can
// never walk forever.
const maxPathHops = 100

// PathResolver computes device-level routes by walking the topology's
// connection list as an adjacency relation.
//
// The walk is first-match in connection-list order and follows a
// single candidate per hop. That keeps it deterministic and cheap but
// not shortest-path; simulated topologies are small trees and stars,
// not general graphs with alternate routes worth comparing.
type PathResolver struct {
	kb *KnowledgeBase
}

// NewPathResolver creates a resolver over the given topology.
func NewPathResolver(kb *KnowledgeBase) *PathResolver {
	return &PathResolver{kb: kb}
}

// Path returns the ordered device IDs from source to dest, both ends
// inclusive. Path(a, a) is [a] without scanning any connections. A
// nil result means no route: a dead end or a walk past the hop bound.
//
// Candidates leading back to a device already on the path are skipped
// during the scan, so the walk cannot loop and survives any ordering
// of the connection list. It still follows only one candidate per hop:
// a greedy wrong turn at a branching device is a dead end, not a
// trigger for backtracking.
func (pr *PathResolver) Path(sourceID, destID string) []string {
	path := []string{sourceID}
	if sourceID == destID {
		return path
	}

	conns := pr.kb.GetConnections()
	seen := map[string]struct{}{sourceID: {}}
	current := sourceID

	for current != destID {
		next := ""
		for _, conn := range conns {
			var candidate string
			switch current {
			case model.DeviceID(conn.From):
				candidate = model.DeviceID(conn.To)
			case model.DeviceID(conn.To):
				candidate = model.DeviceID(conn.From)
			default:
				continue
			}
			if _, visited := seen[candidate]; visited {
				continue
			}
			next = candidate
			break
		}

		if next == "" {
			return nil
		}

		path = append(path, next)
		seen[next] = struct{}{}
		current = next

		if len(path) > maxPathHops {
			return nil
		}
	}

	return path
}
