// Package transport connects a roguesd.Client to a physical link.
//
// The client polls its port one byte at a time and never blocks on a read.
// Stream bridges that contract to any blocking io.ReadWriter (a serial port,
// a TCP serial bridge, a pipe) by reading in the background:
//
//	port, err := transport.OpenSerial("/dev/ttyUSB0", 9600)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	client := roguesd.New(port)
//
// Serial access uses go.bug.st/serial. Ports lists the devices present.
package transport
