package messaging

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"dramaforge/shared/interfaces"
	"dramaforge/shared/models"
)

var _ interfaces.Settler = (*LocalSettler)(nil)

// LocalSettler подтверждает узлы в процессе с тестовыми квитанциями. id
// транзакции зависит только от seed, сессии и узла и не меняется при повторах.
type LocalSettler struct {
	seed uint64
}

// NewLocalSettler создает Settler, который никогда не падает.
func NewLocalSettler(seed uint64) *LocalSettler {
	return &LocalSettler{seed: seed}
}

func (s *LocalSettler) Settle(ctx context.Context, req models.SettlementRequest) (*models.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txID := TransactionID(s.seed, req)
	return &models.Receipt{
		NodeID:         req.Node.NodeID,
		TransactionID:  txID,
		BlockReference: "local:" + txID[:12],
	}, nil
}

// TransactionID вычисляет hex id транзакции из seed и узла.
func TransactionID(seed uint64, req models.SettlementRequest) string {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	h.Write(buf[:])
	h.Write([]byte(req.SessionID))
	h.Write([]byte{0})
	h.Write([]byte(req.Node.NodeID))
	for _, a := range req.RegisteredAssets {
		h.Write([]byte{0})
		h.Write([]byte(a.AssetID))
	}
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
