package dag

// Flatten returns root's DAG in topological order: every node appears after
// both of its operands and before any node that references it, and shared
// subexpressions (the same *Node reached through two parents) appear
// exactly once. The tape compiler consumes this order directly.
func Flatten(root *Node) []*Node {
	if root == nil {
		return nil
	}
	var order []*Node
	visited := make(map[*Node]bool)
	var visit func(n *Node)
	visit = func(n *Node) {
		if n == nil || visited[n] {
			return
		}
		visited[n] = true
		visit(n.LHS)
		visit(n.RHS)
		order = append(order, n)
	}
	visit(root)
	return order
}

// LastUse computes, for every node in order, the highest index in order of
// a node that references it as an operand (or its own index if nothing
// references it, i.e. it is only ever read once it is itself emitted; this
// happens for the root). The tape compiler's liveness prepass uses this to
// reclaim register slots as soon as a node's last reader has been emitted.
func LastUse(order []*Node) map[*Node]int {
	idx := make(map[*Node]int, len(order))
	for i, n := range order {
		idx[n] = i
	}
	last := make(map[*Node]int, len(order))
	for i, n := range order {
		last[n] = i
		if n.LHS != nil {
			if i > last[n.LHS] {
				last[n.LHS] = i
			}
		}
		if n.RHS != nil {
			if i > last[n.RHS] {
				last[n.RHS] = i
			}
		}
	}
	return last
}
