// idmask-agent is the injectable entry point. Build it as a shared
// object and have an external loader map it into the target process; the
// blank import arms the interception from the constructor the loader runs
// before application code:
//
//	go build -buildmode=c-shared -o idmask-agent.so ./cmd/idmask-agent
package main

import _ "github.com/spoofkit/idmask/autoload"

func main() {}
