package model

// Claim is a miner-side verification answer before it is put on the wire
type Claim struct {
	IsTrue      bool       `json:"is_true"`
	Confidence  float64    `json:"confidence"`
	Evidence    []Evidence `json:"evidence"`
	Explanation string     `json:"explanation"`
	Methodology string     `json:"methodology"`
}
