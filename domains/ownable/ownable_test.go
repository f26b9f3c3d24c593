package ownable

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/omnichain-configurator/configurator"
	"github.com/ruteri/omnichain-configurator/graph"
	"github.com/ruteri/omnichain-configurator/handles"
	"github.com/ruteri/omnichain-configurator/interfaces"
	"github.com/ruteri/omnichain-configurator/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOwnable struct {
	mock.Mock
}

func (m *mockOwnable) Owner(ctx context.Context) (common.Address, error) {
	args := m.Called(ctx)
	return args.Get(0).(common.Address), args.Error(1)
}

func (m *mockOwnable) TransferOwnership(newOwner common.Address) (interfaces.Action, error) {
	args := m.Called(newOwner)
	return args.Get(0).(interfaces.Action), args.Error(1)
}

type config struct {
	Owner *common.Address
}

func ownerOf(c config) *common.Address { return c.Owner }

var quiet = configurator.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

func TestConfigureOwner(t *testing.T) {
	current := common.HexToAddress("0x01")
	desired := common.HexToAddress("0x02")
	p1 := interfaces.Point{EID: 1, Address: common.HexToAddress("0xaa")}
	p2 := interfaces.Point{EID: 2, Address: common.HexToAddress("0xaa")}
	p3 := interfaces.Point{EID: 3, Address: common.HexToAddress("0xaa")}

	h1, h2, h3 := &mockOwnable{}, &mockOwnable{}, &mockOwnable{}
	h1.On("Owner", mock.Anything).Return(current, nil).Once()
	h1.On("TransferOwnership", desired).Return(interfaces.Action{Point: p1, Description: "transfer"}, nil).Once()
	h2.On("Owner", mock.Anything).Return(desired, nil).Once()

	factory := handles.ResolverFunc[*mockOwnable](func(ctx context.Context, p interfaces.Point) (*mockOwnable, error) {
		return map[interfaces.EndpointID]*mockOwnable{1: h1, 2: h2, 3: h3}[p.EID], nil
	})

	g, err := graph.Build[config, struct{}]([]graph.Node[config]{
		{Point: p1, Config: config{Owner: &desired}},
		{Point: p2, Config: config{Owner: &desired}},
		{Point: p3},
	}, nil)
	require.NoError(t, err)

	cache := state.NewCache(nil)
	configure := ConfigureOwner[config, struct{}, *mockOwnable](cache, ownerOf, quiet)

	actions, err := configure(context.Background(), g, factory)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, p1, actions[0].Point)

	// Owner reads are served from the cache on the second pass.
	h1.On("TransferOwnership", desired).Return(interfaces.Action{Point: p1, Description: "transfer"}, nil).Once()
	actions, err = configure(context.Background(), g, factory)
	require.NoError(t, err)
	assert.Len(t, actions, 1)

	h1.AssertNumberOfCalls(t, "Owner", 1)
	h1.AssertNumberOfCalls(t, "TransferOwnership", 2)
	h2.AssertExpectations(t)
	h3.AssertNotCalled(t, "Owner", mock.Anything)
}
