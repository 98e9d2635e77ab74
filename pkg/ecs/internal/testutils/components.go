// Package testutils holds payload types shared by the ecs tests.
package testutils

type Vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

type Health struct {
	Value int `json:"value"`
}

type Inventory struct {
	Items map[string]int `json:"items"`
}

type Name struct {
	Value string `json:"value"`
}
