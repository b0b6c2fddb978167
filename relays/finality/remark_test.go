package finality

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/blockdeep/exbrid/chain"
)

func TestRemarkFormatter_Default(t *testing.T) {
	formatter, err := NewRemarkFormatter(DefaultRemarkTemplate)
	require.NoError(t, err)

	hash := common.HexToHash("0xabababababababababababababababababababababababababababababababab")
	remark, err := formatter.Format(chain.NewBlockRecord(100, hash))
	require.NoError(t, err)
	require.Equal(t,
		"ETH finalized block: number=100, hash=0xabababababababababababababababababababababababababababababababab",
		string(remark),
	)
}

func TestRemarkFormatter_ZeroRecord(t *testing.T) {
	formatter, err := NewRemarkFormatter(DefaultRemarkTemplate)
	require.NoError(t, err)

	remark, err := formatter.Format(chain.BlockRecord{})
	require.NoError(t, err)
	require.Equal(t,
		"ETH finalized block: number=0, hash=0x0000000000000000000000000000000000000000000000000000000000000000",
		string(remark),
	)
}

func TestRemarkFormatter_Custom(t *testing.T) {
	formatter, err := NewRemarkFormatter("eth:{{number}}")
	require.NoError(t, err)

	remark, err := formatter.Format(chain.NewBlockRecord(18_000_000, common.Hash{}))
	require.NoError(t, err)
	require.Equal(t, "eth:18000000", string(remark))
}

func TestRemarkFormatter_InvalidTemplate(t *testing.T) {
	_, err := NewRemarkFormatter("number={{number")
	require.Error(t, err)
}
