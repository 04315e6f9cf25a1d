package inventory

import "testing"

func TestParseNmapGrepable(t *testing.T) {
	out := `# Nmap 7.94 scan initiated
Host: 192.168.1.10 ()	Status: Up
Host: 192.168.1.10 ()	Ports: 22/open/tcp//ssh///, 80/open/tcp//http///, 443/closed/tcp//https///	Ignored State: filtered (97)
# Nmap done
`
	ports := parseNmapGrepable(out)
	if len(ports) != 2 {
		t.Fatalf("got %d open ports, want 2: %+v", len(ports), ports)
	}
	if ports[0].Port != 22 || ports[0].Protocol != "tcp" || ports[0].Service != "ssh" {
		t.Errorf("first port = %+v, want 22/tcp/ssh", ports[0])
	}
	if ports[1].Port != 80 || ports[1].Service != "http" {
		t.Errorf("second port = %+v, want 80/http", ports[1])
	}
}

func TestParseNmapGrepableNoPorts(t *testing.T) {
	out := "Host: 192.168.1.20 ()\tStatus: Up\n"
	if ports := parseNmapGrepable(out); len(ports) != 0 {
		t.Errorf("got %d ports from host with no Ports line, want 0", len(ports))
	}
	if ports := parseNmapGrepable(""); len(ports) != 0 {
		t.Errorf("got %d ports from empty output, want 0", len(ports))
	}
}
