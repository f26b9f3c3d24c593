package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackDecodeCall(t *testing.T) {
	token := common.HexToAddress("0x0a")
	stakes := []common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")}
	points := []*big.Int{big.NewInt(50), big.NewInt(30)}

	data, err := Pack("setAllocPoints", token, stakes, points)
	require.NoError(t, err)

	call, err := DecodeCall(data)
	require.NoError(t, err)
	assert.Equal(t, "setAllocPoints", call.Method.Name)
	require.Len(t, call.Args, 3)
	assert.Equal(t, token, call.Args[0])
	assert.Equal(t, stakes, call.Args[1])
	assert.Equal(t, 0, points[1].Cmp(call.Args[2].([]*big.Int)[1]))
}

func TestDecodeCallUnknownSelector(t *testing.T) {
	_, err := DecodeCall([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.ErrorIs(t, err, ErrUnknownSelector)

	_, err = DecodeCall([]byte{0x01})
	assert.ErrorIs(t, err, ErrUnknownSelector)
}

func TestOutputRoundTrip(t *testing.T) {
	method := ConfigurableABI.Methods["owner"]
	owner := common.HexToAddress("0xbeef")

	out, err := PackOutput(&method, owner)
	require.NoError(t, err)

	decoded, err := UnpackOutput[common.Address]("owner", out)
	require.NoError(t, err)
	assert.Equal(t, owner, decoded)

	peersMethod := ConfigurableABI.Methods["peers"]
	peer := common.HexToHash("0x1234")
	out, err = PackOutput(&peersMethod, [32]byte(peer))
	require.NoError(t, err)

	decodedPeer, err := UnpackOutput[common.Hash]("peers", out)
	require.NoError(t, err)
	assert.Equal(t, peer, decodedPeer)

	allowanceMethod := ConfigurableABI.Methods["allowance"]
	out, err = PackOutput(&allowanceMethod, big.NewInt(100))
	require.NoError(t, err)

	amount, err := UnpackOutput[*big.Int]("allowance", out)
	require.NoError(t, err)
	assert.Equal(t, int64(100), amount.Int64())
}
