// This file was auto-generated using createmock. See the following page for
// more information:
//
//     https://github.com/jacobsa/oglemock
//

package mock_vnode

import (
	fmt "fmt"
	runtime "runtime"
	unsafe "unsafe"

	oglemock "github.com/jacobsa/oglemock"
	context "golang.org/x/net/context"

	vnode "github.com/os161go/kernel/vnode"
)

type MockNode interface {
	vnode.Node
	oglemock.MockObject
}

type mockNode struct {
	controller  oglemock.Controller
	description string
}

func NewMockNode(
	c oglemock.Controller,
	desc string) MockNode {
	return &mockNode{
		controller:  c,
		description: desc,
	}
}

func (m *mockNode) Oglemock_Id() uintptr {
	return uintptr(unsafe.Pointer(m))
}

func (m *mockNode) Oglemock_Description() string {
	return m.description
}

func (m *mockNode) Read(p0 context.Context, p1 *vnode.IOBuf, p2 int64) (o0 int, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Read",
		file,
		line,
		[]interface{}{p0, p1, p2})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockNode.Read: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(int)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}

func (m *mockNode) Write(p0 context.Context, p1 *vnode.IOBuf, p2 int64) (o0 int, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Write",
		file,
		line,
		[]interface{}{p0, p1, p2})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockNode.Write: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(int)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}

func (m *mockNode) Stat(p0 context.Context) (o0 vnode.Stat, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Stat",
		file,
		line,
		[]interface{}{p0})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockNode.Stat: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(vnode.Stat)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}

func (m *mockNode) IsSeekable() (o0 bool) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"IsSeekable",
		file,
		line,
		[]interface{}{})

	if len(retVals) != 1 {
		panic(fmt.Sprintf("mockNode.IsSeekable: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(bool)
	}

	return
}

func (m *mockNode) IncRef() {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"IncRef",
		file,
		line,
		[]interface{}{})

	if len(retVals) != 0 {
		panic(fmt.Sprintf("mockNode.IncRef: invalid return values: %v", retVals))
	}

	return
}

func (m *mockNode) Close(p0 context.Context) (o0 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Close",
		file,
		line,
		[]interface{}{p0})

	if len(retVals) != 1 {
		panic(fmt.Sprintf("mockNode.Close: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(error)
	}

	return
}
