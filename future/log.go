// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package future

import "log"

func logListenerPanic(recovered any) {
	log.Printf("reactorcore/future: recovered panic in listener: %v", recovered)
}
