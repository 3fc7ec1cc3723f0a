//go:build !tinygo

package hal

import (
	"github.com/stretchr/testify/mock"
	"github.com/zephray/XserveFanSpeedController/pkg/softi2c"
)

// fails if LedMock does not implement Led
var _ Led = &LedMock{}

// LedMock implements a mock for the Led interface
type LedMock struct {
	mock.Mock
}

func (m *LedMock) Set(on bool) error {
	args := m.Called(on)
	return args.Error(0)
}

// fails if BusPinsMock does not implement BusPins
var _ BusPins = &BusPinsMock{}

// BusPinsMock implements a mock for the BusPins interface
type BusPinsMock struct {
	mock.Mock
}

func (m *BusPinsMock) Apply(cmd softi2c.Command) {
	m.Called(cmd)
}

func (m *BusPinsMock) Attach(bus *softi2c.Bus) {
	m.Called(bus)
}

func (m *BusPinsMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
