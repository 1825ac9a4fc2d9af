package mocks

import (
	"io"

	"github.com/brettbedarf/tecnicofs"
	"github.com/stretchr/testify/mock"
)

// MockOperator implements tecnicofs.Operator for testing across packages
type MockOperator struct {
	mock.Mock
}

var _ tecnicofs.Operator = (*MockOperator)(nil)

func (m *MockOperator) Create(path string, kind tecnicofs.NodeType) error {
	args := m.Called(path, kind)
	return args.Error(0)
}

func (m *MockOperator) Delete(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockOperator) Lookup(path string) (tecnicofs.Inumber, error) {
	args := m.Called(path)

	// Handle nil returns
	if args.Get(0) == nil {
		return tecnicofs.FreeInumber, args.Error(1)
	}
	return args.Get(0).(tecnicofs.Inumber), args.Error(1)
}

func (m *MockOperator) Move(src, dst string) error {
	args := m.Called(src, dst)
	return args.Error(0)
}

func (m *MockOperator) PrintTree(w io.Writer) error {
	args := m.Called(w)

	// Handle function return types (for tests that write a dump)
	if fn, ok := args.Get(0).(func(io.Writer) error); ok {
		return fn(w)
	}
	return args.Error(0)
}
