// QuarkScript Debug Demo
//
// Runs a small scripted program under the debugger, serves the session over
// WebSocket, and prints every break it hits.
//
// Usage:
//
//	QSDBG_DEBUG=true QSDBG_LISTEN_ADDR=localhost:19229 go run ./cmd/debugdemo/
package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/quarkscript/debug-go/pkg/breakpoint"
	"github.com/quarkscript/debug-go/pkg/event"
	"github.com/quarkscript/debug-go/pkg/minihost"
	"github.com/quarkscript/debug-go/pkg/transport"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("QuarkScript Debug Demo")
	fmt.Println("===========================================")

	host := minihost.New()
	session := host.Session()
	defer session.Close()

	session.SetEventListener(func(e *event.Event) {
		switch e.Type {
		case event.Break:
			top := e.TopFrame()
			fmt.Printf("break #%d in %s at line %d (breakpoints %v)\n",
				e.BreakID, top.Function, top.Location.Line, e.Breakpoints)
		case event.Exception:
			fmt.Printf("exception #%d: %v (caught=%v)\n",
				e.BreakID, e.Exception.Value, e.Exception.Caught)
		case event.AfterCompile:
			fmt.Printf("compiled %q as script %d\n", e.Script.Name(), e.Script.ID())
		}
	})

	if addr := session.Config().ListenAddr; addr != "" {
		server := transport.NewServer(session)
		defer server.Close()
		go func() {
			log.Printf("[QuarkScript Debug] Listening on ws://%s", addr)
			if err := http.ListenAndServe(addr, server); err != nil {
				log.Printf("[QuarkScript Debug] Listener stopped: %v", err)
			}
		}()
		fmt.Println("Waiting for a debugger to attach...")
		time.Sleep(3 * time.Second)
	}

	sc, err := host.Compile(minihost.Program{
		Name: "demo",
		Source: `function worker() {
  total = total + step;
  if (total > 30) { throw "overflow" }
}
function main() {
  while (rounds > 0) {
    worker();
    rounds = rounds - 1;
  }
}`,
		Functions: []minihost.Function{
			{Name: "worker", StartLine: 1, EndLine: 4, Body: []minihost.Stmt{
				minihost.LetExpr(2, "total", "total + step"),
				minihost.If(3, "total > 30",
					minihost.Throw(3, "overflow"),
				),
			}},
			{Name: "main", StartLine: 5, EndLine: 10, Body: []minihost.Stmt{
				minihost.While(6, "rounds > 0",
					minihost.Call(7, "worker"),
					minihost.LetExpr(8, "rounds", "rounds - 1"),
				),
			}},
		},
	})
	if err != nil {
		log.Fatalf("compile: %v", err)
	}

	host.SetGlobal("total", 0)
	host.SetGlobal("step", 7)
	host.SetGlobal("rounds", 10)

	// Break in worker once the total passes 20, skipping the first hit.
	id := session.SetBreakpoint(breakpoint.TargetByName("demo", 2, 0), "total > 20")
	session.ChangeIgnoreCount(id, 1)
	session.ChangeBreakOnException(false, true)

	if err := host.Invoke(sc, "main"); err != nil {
		if v, ok := minihost.ThrownValue(err); ok {
			fmt.Printf("script threw: %v\n", v)
		} else {
			fmt.Printf("execution stopped: %v\n", err)
		}
	}

	if bp, ok := session.Breakpoints().Get(id); ok {
		fmt.Printf("breakpoint %d hit %d times\n", bp.ID(), bp.HitCount())
	}

	fmt.Println("===========================================")
	fmt.Println("Demo complete.")
	fmt.Println("===========================================")
}
