// Package pathfind computes minimum-tick routes across the star graph. Edges
// connect any two stars within the travelling player's hyperspace range plus
// any wormhole pair, and edge cost is the tick count the given carrier would
// need for the hop. Costing by ticks rather than raw distance matters: a
// one-tick wormhole across the map beats a short direct hop, so a
// distance-based heuristic would not be admissible. Plain Dijkstra it is.
package pathfind

import (
	"container/heap"
	"errors"
	"fmt"

	"stardrift/server/internal/game"
	"stardrift/server/internal/travel"
)

// ErrNoRoute is returned when the destination is unreachable with the
// carrier's current hyperspace range.
var ErrNoRoute = errors.New("pathfind: no route to destination")

// Hop is one leg of a computed route.
type Hop struct {
	StarID string `json:"starId"`
	Ticks  int    `json:"ticks"`
}

// Route is the optimal path from source to destination. Hops excludes the
// source star; TotalTicks is the sum of all hop costs.
type Route struct {
	Hops       []Hop `json:"hops"`
	TotalTicks int   `json:"totalTicks"`
}

type routeNode struct {
	star   *game.Star
	cost   int
	parent *routeNode
	index  int
}

type routeQueue []*routeNode

func (pq routeQueue) Len() int { return len(pq) }

func (pq routeQueue) Less(i, j int) bool { return pq[i].cost < pq[j].cost }

func (pq routeQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *routeQueue) Push(x any) {
	n := len(*pq)
	item := x.(*routeNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *routeQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// ShortestRoute finds the minimum-total-tick route for the carrier between
// two stars. The first time the destination is popped from the frontier its
// parent chain is the optimal route.
func ShortestRoute(g *game.Game, carrier *game.Carrier, fromStarID, toStarID string) (Route, error) {
	gal := &g.Galaxy
	source := gal.StarByID(fromStarID)
	dest := gal.StarByID(toStarID)
	if source == nil {
		return Route{}, fmt.Errorf("pathfind: unknown source star %s", fromStarID)
	}
	if dest == nil {
		return Route{}, fmt.Errorf("pathfind: unknown destination star %s", toStarID)
	}
	if source.ID == dest.ID {
		return Route{}, nil
	}

	hyperspace := gal.HyperspaceRange(carrier.OwnerID, carrier)

	open := &routeQueue{}
	heap.Init(open)
	heap.Push(open, &routeNode{star: source})
	best := map[string]int{source.ID: 0}
	closed := make(map[string]struct{})

	for open.Len() > 0 {
		current := heap.Pop(open).(*routeNode)
		if _, seen := closed[current.star.ID]; seen {
			continue
		}
		closed[current.star.ID] = struct{}{}
		if current.star.ID == dest.ID {
			return reconstructRoute(current), nil
		}

		for _, neighbor := range gal.Stars {
			if neighbor.ID == current.star.ID {
				continue
			}
			if _, seen := closed[neighbor.ID]; seen {
				continue
			}
			if !reachable(current.star, neighbor, hyperspace) {
				continue
			}
			ticks := travel.TicksBetween(gal, g.Settings, carrier, current.star, neighbor, current.star.Location)
			tentative := current.cost + ticks
			if prev, ok := best[neighbor.ID]; ok && tentative >= prev {
				continue
			}
			best[neighbor.ID] = tentative
			heap.Push(open, &routeNode{star: neighbor, cost: tentative, parent: current})
		}
	}
	return Route{}, ErrNoRoute
}

func reachable(from, to *game.Star, hyperspace float64) bool {
	if game.WormholePaired(from, to) {
		return true
	}
	dx := to.Location.X - from.Location.X
	dy := to.Location.Y - from.Location.Y
	return dx*dx+dy*dy <= hyperspace*hyperspace
}

func reconstructRoute(end *routeNode) Route {
	var hops []Hop
	for node := end; node.parent != nil; node = node.parent {
		hops = append(hops, Hop{StarID: node.star.ID, Ticks: node.cost - node.parent.cost})
	}
	for i, j := 0, len(hops)-1; i < j; i, j = i+1, j-1 {
		hops[i], hops[j] = hops[j], hops[i]
	}
	return Route{Hops: hops, TotalTicks: end.cost}
}
