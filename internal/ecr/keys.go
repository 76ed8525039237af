package ecr

// LinkKey builds the canonical, order-independent key for the link
// between a and b.
func LinkKey(a, b string) string {
	if a < b {
		return a + "_" + b
	}
	return b + "_" + a
}

// RouteKey builds the canonical key for a directed flow from src to dst.
func RouteKey(src, dst string) string {
	return src + "_" + dst
}
