// sftpfs is the command line client for remote file systems over SFTP.
package main

func main() {
	Execute()
}
