package canvas

// Palette is the fixed ordered color list assigned to joining users
// round-robin. The order is compiled in and therefore stable across
// restarts, so reconnecting clients see familiar identities.
var Palette = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#FFA07A",
	"#98D8C8",
	"#F7DC6F",
	"#BB8FCE",
	"#85C1E9",
}
