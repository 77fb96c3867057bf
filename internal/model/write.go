package model

// WriteKind names a state-mutating contract call.
type WriteKind string

const (
	WriteTransfer     WriteKind = "transfer"
	WriteApprove      WriteKind = "approve"
	WriteTransferFrom WriteKind = "transfer_from"
	WriteMint         WriteKind = "mint"
	WriteBurn         WriteKind = "burn"
	WriteSnapshot     WriteKind = "snapshot"
)

// WriteRecord is the journal row for one terminal write outcome.
type WriteRecord struct {
	ChainID     uint64 `json:"chain_id"`
	Account     string `json:"account"`
	Kind        string `json:"kind"`
	TxHash      string `json:"tx_hash"`
	State       string `json:"state"`
	Reason      string `json:"reason,omitempty"`
	SubmittedAt string `json:"submitted_at"`
	FinishedAt  string `json:"finished_at"`
}
