package global

import (
	"fmt"
	"net"
	"time"
)

var Dialer = net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}

var PeerIDPrefix = fmt.Sprintf("-TG%x%x%x0-", MAJOR, MINOR, PATCH)
