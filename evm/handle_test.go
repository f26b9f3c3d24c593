package evm_test

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/omnichain-configurator/evm"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ownerAddr   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	spenderAddr = common.HexToAddress("0x0000000000000000000000000000000000000002")
	tokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleReadsAndActions(t *testing.T) {
	chain := memory.NewChain(30101)
	contract := memory.NewContract(ownerAddr)
	point := chain.Deploy(tokenAddr, contract)
	h := evm.NewHandle(point, chain)
	ctx := context.Background()

	owner, err := h.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, ownerAddr, owner)

	allowance, err := h.Allowance(ctx, ownerAddr, spenderAddr)
	require.NoError(t, err)
	assert.Equal(t, 0, allowance.Sign())

	action, err := h.Approve(ownerAddr, spenderAddr, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, point, action.Point)
	require.NotNil(t, action.Signer)
	assert.Equal(t, ownerAddr, *action.Signer)

	require.NoError(t, chain.Apply(action))

	allowance, err = h.Allowance(ctx, ownerAddr, spenderAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(100), allowance.Int64())
}

func TestHandlePeersAndGas(t *testing.T) {
	chain := memory.NewChain(1)
	point := chain.Deploy(tokenAddr, memory.NewContract(ownerAddr))
	h := evm.NewHandle(point, chain)
	ctx := context.Background()

	peer := interfaces.AddressToBytes32(common.HexToAddress("0xbb"))
	action, err := h.SetPeer(2, peer)
	require.NoError(t, err)
	require.NoError(t, chain.Apply(action))

	got, err := h.Peer(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, peer, got)

	gas, err := h.EnforcedGasLimit(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, gas.Sign())

	action, err = h.SetEnforcedGasLimit(2, big.NewInt(200000))
	require.NoError(t, err)
	require.NoError(t, chain.Apply(action))

	gas, err = h.EnforcedGasLimit(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(200000), gas.Int64())
}

func TestHandleNoCode(t *testing.T) {
	chain := memory.NewChain(1)
	h := evm.NewHandle(interfaces.Point{EID: 1, Address: tokenAddr}, chain)

	_, err := h.Owner(context.Background())
	assert.ErrorIs(t, err, evm.ErrNoCode)
}

func TestSetAllocPointsLengthMismatch(t *testing.T) {
	h := evm.NewHandle(interfaces.Point{EID: 1, Address: tokenAddr}, memory.NewChain(1))

	_, err := h.SetAllocPoints(tokenAddr, []common.Address{spenderAddr}, nil)
	assert.Error(t, err)
}

func TestSessionDialsOncePerEndpoint(t *testing.T) {
	chainA := memory.NewChain(1)
	chainB := memory.NewChain(2)
	network := memory.NewNetwork(chainA, chainB)
	network.SetUnreachable(2, true)

	session := evm.NewSession(network.Dial, discardLogger())
	defer session.Close()
	ctx := context.Background()

	for _, addr := range []common.Address{tokenAddr, spenderAddr} {
		h, err := session.Resolve(ctx, interfaces.Point{EID: 1, Address: addr})
		require.NoError(t, err)
		assert.Equal(t, addr, h.Point().Address)
	}
	assert.Equal(t, 1, network.Dials())

	_, err := session.Resolve(ctx, interfaces.Point{EID: 2, Address: tokenAddr})
	var unavailable *interfaces.EndpointUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, memory.ErrUnreachable)
}

func TestSessionRedialsAfterCancellation(t *testing.T) {
	network := memory.NewNetwork(memory.NewChain(1))
	session := evm.NewSession(network.Dial, discardLogger())
	defer session.Close()

	point := interfaces.Point{EID: 1, Address: tokenAddr}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := session.Resolve(cancelled, point)
	require.ErrorIs(t, err, context.Canceled)

	h, err := session.Resolve(context.Background(), point)
	require.NoError(t, err)
	assert.Equal(t, point, h.Point())
	assert.Equal(t, 2, network.Dials())

	_, err = session.Resolve(context.Background(), interfaces.Point{EID: 1, Address: spenderAddr})
	require.NoError(t, err)
	assert.Equal(t, 2, network.Dials())
}
