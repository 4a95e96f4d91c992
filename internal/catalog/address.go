package catalog

import (
	"net"
	"os"
)

// ServiceAddress reports "<hostname>/<ip>:<port>" for the running process.
// Responses carry it so an aggregate shows which instance served each part.
func ServiceAddress(port string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}
	return host + "/" + hostIP() + ":" + port
}

func hostIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "unknown-ip"
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}
